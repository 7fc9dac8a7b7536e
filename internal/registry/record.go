package registry

// MinPopulatedFields is the threshold below which a parsed record is treated
// as incomplete. RegID alone never counts as a real record.
const MinPopulatedFields = 2

// Record is one practitioner entry from the register.
type Record struct {
	RegID              string `json:"reg_id"`
	Name               string `json:"name"`
	Profession         string `json:"profession"`
	Division           string `json:"division,omitempty"`
	RegistrationType   string `json:"registration_type,omitempty"`
	RegistrationStatus string `json:"registration_status,omitempty"`
	FirstRegistered    string `json:"first_registered,omitempty"`
	ExpiryDate         string `json:"expiry_date,omitempty"`
	Conditions         string `json:"conditions,omitempty"`
	Endorsements       string `json:"endorsements,omitempty"`
	Qualifications     string `json:"qualifications,omitempty"`
	Languages          string `json:"languages,omitempty"`
	Gender             string `json:"gender,omitempty"`
	Suburb             string `json:"suburb,omitempty"`
	State              string `json:"state,omitempty"`
	Postcode           string `json:"postcode,omitempty"`
}

// PopulatedFields counts the non-empty fields other than RegID.
func (r *Record) PopulatedFields() int {
	fields := []string{
		r.Name, r.Profession, r.Division, r.RegistrationType,
		r.RegistrationStatus, r.FirstRegistered, r.ExpiryDate, r.Conditions,
		r.Endorsements, r.Qualifications, r.Languages, r.Gender,
		r.Suburb, r.State, r.Postcode,
	}
	n := 0
	for _, f := range fields {
		if f != "" {
			n++
		}
	}
	return n
}

// CSVHeader is the column order output rows are written in.
func CSVHeader() []string {
	return []string{
		"reg_id", "name", "profession", "division", "registration_type",
		"registration_status", "first_registered", "expiry_date",
		"conditions", "endorsements", "qualifications", "languages",
		"gender", "suburb", "state", "postcode",
	}
}

// CSVRow renders the record in CSVHeader order.
func (r *Record) CSVRow() []string {
	return []string{
		r.RegID, r.Name, r.Profession, r.Division, r.RegistrationType,
		r.RegistrationStatus, r.FirstRegistered, r.ExpiryDate,
		r.Conditions, r.Endorsements, r.Qualifications, r.Languages,
		r.Gender, r.Suburb, r.State, r.Postcode,
	}
}

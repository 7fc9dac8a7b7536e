package search

// Alphabet is the character set prefixes are built from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Catalog holds the registry dimension tables a strategy enumerates over.
// The zero value is unusable; call DefaultCatalog or build one from config.
type Catalog struct {
	Professions      []string
	States           []string
	Suburbs          map[string][]string
	HighVolumeStates []string
	// HighVolumePrefixes lists prefixes known to exceed the page limit, so
	// the adaptive strategy subdivides them even when a truncated result
	// page hides the real count.
	HighVolumePrefixes []string
}

// DefaultCatalog returns the built-in dimension tables for the Australian
// practitioner registry.
func DefaultCatalog() Catalog {
	return Catalog{
		Professions:        defaultProfessions(),
		States:             defaultStates(),
		Suburbs:            defaultSuburbs(),
		HighVolumeStates:   []string{"New South Wales", "Victoria", "Queensland"},
		HighVolumePrefixes: defaultHighVolumePrefixes(),
	}
}

func defaultProfessions() []string {
	return []string{
		"Aboriginal and Torres Strait Islander Health Practitioner",
		"Chinese Medicine Practitioner",
		"Chiropractor",
		"Dental Practitioner",
		"Medical Practitioner",
		"Medical Radiation Practitioner",
		"Midwife",
		"Nurse",
		"Occupational Therapist",
		"Optometrist",
		"Osteopath",
		"Paramedic",
		"Pharmacist",
		"Physiotherapist",
		"Podiatrist",
		"Psychologist",
	}
}

func defaultStates() []string {
	return []string{
		"Australian Capital Territory",
		"New South Wales",
		"Northern Territory",
		"Queensland",
		"South Australia",
		"Tasmania",
		"Victoria",
		"Western Australia",
	}
}

// StateAbbreviations maps full state names to their postal abbreviations,
// used in output rows and progress displays.
var StateAbbreviations = map[string]string{
	"Australian Capital Territory": "ACT",
	"New South Wales":              "NSW",
	"Northern Territory":           "NT",
	"Queensland":                   "QLD",
	"South Australia":              "SA",
	"Tasmania":                     "TAS",
	"Victoria":                     "VIC",
	"Western Australia":            "WA",
}

// Common surname prefixes that routinely overflow a single result page.
func defaultHighVolumePrefixes() []string {
	return []string{
		"SM", "JO", "WI", "BR", "TA", "AN", "TH", "JA", "WH", "HA",
		"MA", "GA", "CL", "RO", "LE", "WA", "NG", "CH", "KI",
	}
}

// Major localities per state, used by the multi-dimensional strategy when
// suburb mode is enabled.
func defaultSuburbs() map[string][]string {
	return map[string][]string{
		"New South Wales": {
			"Sydney", "Parramatta", "Newcastle", "Wollongong", "Central Coast",
			"Penrith", "Liverpool", "Blacktown", "Campbelltown", "Bankstown",
			"Hornsby", "Chatswood", "North Sydney", "Bondi", "Manly",
			"Sutherland", "Hurstville", "Kogarah", "Randwick", "Burwood",
			"Strathfield", "Auburn", "Ryde", "Epping", "Macquarie Park",
			"Gosford", "Wyong", "Maitland", "Cessnock", "Lake Macquarie",
			"Port Macquarie", "Tamworth", "Orange", "Dubbo", "Wagga Wagga",
			"Albury", "Coffs Harbour", "Lismore", "Tweed Heads", "Broken Hill",
		},
		"Victoria": {
			"Melbourne", "Geelong", "Ballarat", "Bendigo", "Shepparton",
			"Mildura", "Warrnambool", "Traralgon", "Wodonga", "Wangaratta",
			"Frankston", "Dandenong", "Box Hill", "Ringwood", "Footscray",
			"St Kilda", "South Yarra", "Richmond", "Carlton", "Brunswick",
			"Preston", "Heidelberg", "Moorabbin", "Caulfield", "Brighton",
			"Glen Waverley", "Doncaster", "Camberwell", "Hawthorn", "Kew",
			"Sunshine", "Werribee", "Melton", "Pakenham", "Cranbourne",
			"Mornington", "Rosebud", "Sale", "Bairnsdale", "Horsham",
		},
		"Queensland": {
			"Brisbane", "Gold Coast", "Sunshine Coast", "Townsville", "Cairns",
			"Toowoomba", "Mackay", "Rockhampton", "Bundaberg", "Hervey Bay",
			"Gladstone", "Mount Isa", "Ipswich", "Logan", "Redcliffe",
			"Caboolture", "Caloundra", "Maroochydore", "Noosa", "Nambour",
			"Southport", "Surfers Paradise", "Robina", "Nerang", "Burleigh Heads",
			"Chermside", "Indooroopilly", "Toowong", "Woolloongabba", "Fortitude Valley",
			"Springwood", "Browns Plains", "Beenleigh", "Cleveland", "Redland Bay",
			"Bowen", "Emerald", "Longreach", "Roma", "Charleville",
		},
		"Western Australia": {
			"Perth", "Fremantle", "Mandurah", "Rockingham", "Bunbury",
			"Geraldton", "Kalgoorlie", "Albany", "Broome", "Karratha",
			"Port Hedland", "Busselton", "Joondalup", "Wanneroo", "Stirling",
			"Morley", "Midland", "Armadale", "Gosnells", "Canning",
			"Subiaco", "Claremont", "Nedlands", "South Perth", "Victoria Park",
			"Scarborough", "Hillarys", "Duncraig", "Karrinyup", "Innaloo",
			"Thornlie", "Cannington", "Belmont", "Bayswater", "Bassendean",
			"Esperance", "Carnarvon", "Newman", "Tom Price", "Exmouth",
		},
		"South Australia": {
			"Adelaide", "Mount Gambier", "Whyalla", "Murray Bridge", "Port Augusta",
			"Port Lincoln", "Port Pirie", "Victor Harbor", "Gawler", "Mount Barker",
			"Salisbury", "Elizabeth", "Modbury", "Marion", "Noarlunga",
			"Glenelg", "Brighton", "Henley Beach", "Semaphore", "Port Adelaide",
			"Norwood", "Burnside", "Unley", "Mitcham", "Blackwood",
			"Prospect", "Walkerville", "Campbelltown", "Paradise", "Magill",
			"Tea Tree Gully", "Golden Grove", "Mawson Lakes", "Playford",
			"Clare", "Tanunda", "Nuriootpa", "Renmark", "Berri",
		},
		"Tasmania": {
			"Hobart", "Launceston", "Devonport", "Burnie", "Kingston",
			"Glenorchy", "Clarence", "Moonah", "New Town", "Sandy Bay",
			"Rosny", "Bellerive", "Lindisfarne", "Howrah", "Sorell",
			"Mowbray", "Newnham", "Invermay", "Prospect", "Ravenswood",
			"Ulverstone", "Wynyard", "Smithton", "George Town", "Scottsdale",
			"Queenstown", "New Norfolk", "Bridgewater", "Brighton", "Richmond",
		},
		"Australian Capital Territory": {
			"Canberra", "Belconnen", "Woden", "Tuggeranong", "Gungahlin",
			"Civic", "Braddon", "Dickson", "Fyshwick", "Kingston",
			"Manuka", "Barton", "Deakin", "Curtin", "Weston",
			"Bruce", "Mitchell", "Phillip", "Mawson", "Kambah",
			"Queanbeyan",
		},
		"Northern Territory": {
			"Darwin", "Alice Springs", "Palmerston", "Katherine", "Nhulunbuy",
			"Tennant Creek", "Jabiru", "Casuarina", "Stuart Park", "Fannie Bay",
			"Parap", "Nightcliff", "Rapid Creek", "Millner", "Coconut Grove",
			"Howard Springs", "Humpty Doo", "Litchfield", "Batchelor", "Pine Creek",
		},
	}
}

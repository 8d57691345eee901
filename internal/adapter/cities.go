package adapter

// commonCities is the last-resort city fallback table, keyed by canonical
// domain, used when neither the browse-business-cities endpoint nor the
// homepage navigation yields any city links.
var commonCities = map[string][]string{
	"yello.ae":           {"Dubai", "Abu Dhabi", "Sharjah", "Ajman", "Ras Al Khaimah", "Fujairah", "Umm Al Quwain"},
	"yelu.in":            {"Mumbai", "Delhi", "Bangalore", "Chennai", "Kolkata", "Hyderabad", "Pune", "Ahmedabad"},
	"ghanayellow.com":    {"Accra", "Kumasi", "Tamale", "Cape Coast", "Sekondi-Takoradi", "Sunyani", "Ho"},
	"businesslist.com.ng": {"Lagos", "Abuja", "Kano", "Ibadan", "Port Harcourt", "Benin City", "Maiduguri"},
	"businesslist.co.ke": {"Nairobi", "Mombasa", "Kisumu", "Nakuru", "Eldoret", "Thika", "Malindi"},
	"yellosa.co.za":      {"Johannesburg", "Cape Town", "Durban", "Pretoria", "Port Elizabeth", "Bloemfontein"},
	"yelu.uk":            {"London", "Manchester", "Birmingham", "Liverpool", "Leeds", "Sheffield", "Bristol"},
	"yelu.sg":            {"Central Singapore", "North Singapore", "South Singapore", "East Singapore", "West Singapore"},
	"australiayp.com":    {"Sydney", "Melbourne", "Brisbane", "Perth", "Adelaide", "Canberra", "Darwin"},
	"businesslist.pk": {
		"Karachi", "Lahore", "Faisalabad", "Islamabad", "Rawalpindi", "Gujranwala", "Sialkot",
		"Multan", "Peshawar", "Hyderabad", "Quetta", "Bahawalpur", "Gujrat", "Abbottabad",
		"Rawalpini", "Sargodha", "Kasur", "Sukkur", "Sahiwal", "Larkana", "Jhelum", "Daska",
		"Okara", "Wazirabad", "Jhang", "Mardan", "Chiniot", "Rahim Yar Khan", "Chakwal",
		"Hafizabad", "Mandi Bahauddin", "Taxila", "Swabi", "Vehari", "Wah Cantonment",
		"Nowshera", "Nawabshah", "Khairpur", "Burewala", "Kamoke", "Kohat", "Dera Ghazi Khan",
		"Muridke", "Toba Tek Singh", "Dadu", "Chishtian", "Timergara", "Kamalia", "Khanewal",
		"Mingora", "Mirpur Khas", "Gojra", "Khushab", "Pakpattan", "Bahawalnagar", "Shekhupura",
		"Sadiqabad", "Dera Ismail Khan", "Muzaffargarh", "Ahmadpur East", "Chakdara", "Chaman",
		"Jaranwala", "Khanpur", "Kot Adu", "Shikarpur", "Tando Allahyar", "Jacobabad", "Khuzdar",
	},
}

// defaultCities is used when the canonical domain has no entry in commonCities.
var defaultCities = []string{"Capital", "Main City", "Central"}

// citiesForDomain returns the fallback city name list for a canonical
// domain, falling back to defaultCities if the domain is unrecognized.
func citiesForDomain(canonicalDomain string) []string {
	if cities, ok := commonCities[canonicalDomain]; ok {
		return cities
	}
	return defaultCities
}

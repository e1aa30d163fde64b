package aqi

var advisories = map[Category]string{
	CategoryGood:                  "Air quality is satisfactory. Enjoy outdoor activities.",
	CategoryModerate:              "Air quality is acceptable. Unusually sensitive people should consider limiting prolonged outdoor exertion.",
	CategoryUnhealthyForSensitive: "Members of sensitive groups may experience health effects. Consider reducing prolonged outdoor exertion.",
	CategoryUnhealthy:             "Everyone may begin to experience health effects. Consider staying indoors and reducing outdoor activities.",
	CategoryVeryUnhealthy:         "Health alert: everyone may experience serious health effects. Limit outdoor exposure.",
	CategoryHazardous:             "Health emergency: everyone may experience serious health effects. Stay indoors and avoid outdoor exposure.",
}

const unknownAdvisory = "Insufficient data for health advisory."

// Advisory returns the public health advisory for a category.
func Advisory(c Category) string {
	if msg, ok := advisories[c]; ok {
		return msg
	}
	return unknownAdvisory
}

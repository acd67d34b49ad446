package providers

import "github.com/i474232898/weather-env-sync/internal/weather"

// Seniverse "now" condition codes to WMO.
// https://docs.seniverse.com/api/start/code.html
var seniverseToWMO = map[int]int{
	0:  0,  // sunny (day)
	1:  0,  // clear (night)
	2:  1,  // fair (day)
	3:  1,  // fair (night)
	4:  3,  // cloudy
	5:  2,  // partly cloudy (day)
	6:  2,  // partly cloudy (night)
	7:  3,  // mostly cloudy (day)
	8:  3,  // mostly cloudy (night)
	9:  3,  // overcast
	10: 80, // shower
	11: 95, // thundershower
	12: 96, // thundershower with hail
	13: 61, // light rain
	14: 63, // moderate rain
	15: 65, // heavy rain
	16: 65, // storm
	17: 65, // heavy storm
	18: 65, // severe storm
	19: 66, // ice rain
	20: 67, // sleet
	21: 71, // snow flurry
	22: 71, // light snow
	23: 73, // moderate snow
	24: 75, // heavy snow
	25: 86, // snowstorm
	26: 6,  // dust
	27: 7,  // sand
	28: 8,  // duststorm
	29: 9,  // sandstorm
	30: 45, // foggy
	31: 5,  // haze
	32: 2,  // windy
	33: 3,  // blustery
	34: 82, // hurricane
	35: 82, // tropical storm
	36: 99, // tornado
	37: 0,  // cold
	38: 0,  // hot
}

// Seniverse codes that carry a day/night distinction.
var seniverseIsDay = map[int]bool{
	0: true, 1: false,
	2: true, 3: false,
	5: true, 6: false,
	7: true, 8: false,
}

// OpenWeather condition ids to WMO.
// https://openweathermap.org/weather-conditions
var openWeatherToWMO = map[int]int{
	200: 95, 201: 95, 202: 99, 210: 95, 211: 95, 212: 99, 221: 95, 230: 95, 231: 95, 232: 99,

	300: 51, 301: 53, 302: 55, 310: 51, 311: 53, 312: 55, 313: 53, 314: 55, 321: 53,

	500: 61, 501: 61, 502: 65, 503: 65, 504: 65, 511: 66,
	520: 80, 521: 81, 522: 82, 531: 82,

	600: 71, 601: 73, 602: 75, 611: 77, 612: 77, 613: 77, 615: 77, 616: 77,
	620: 85, 621: 85, 622: 86,

	701: 45, 711: 4, 721: 5, 731: 6, 741: 45, 751: 7, 761: 6, 762: 4, 771: 3, 781: 99,

	800: 0, 801: 1, 802: 2, 803: 3, 804: 3,
}

// WMO codes reported by Open-Meteo, with their descriptions.
var wmoText = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

func normalize(table map[int]int, raw int) int {
	if code, ok := table[raw]; ok {
		return code
	}
	return weather.CodeUnknown
}

func normalizeWMO(raw int) int {
	if _, ok := wmoText[raw]; ok {
		return raw
	}
	return weather.CodeUnknown
}

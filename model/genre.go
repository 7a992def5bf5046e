package model

// Genres is the fixed genre enumeration. Order is part of the API response.
var Genres = []string{
	"Pop",
	"Rock",
	"Hip-Hop",
	"Rap",
	"Jazz",
	"Classical",
	"Electronic",
	"EDM",
	"Dance",
	"Country",
	"R&B",
	"Soul",
	"Reggae",
	"Metal",
	"Blues",
	"Folk",
	"Indie",
	"Alternative",
	"Punk",
	"K-Pop",
	"Latin",
	"Bollywood",
	"Instrumental",
	"Other",
}

// ValidGenre reports whether g is a member of the genre enumeration.
func ValidGenre(g string) bool {
	for _, genre := range Genres {
		if genre == g {
			return true
		}
	}
	return false
}

// Procedural names for people and areas.
package world

import (
	mrand "math/rand/v2"
	"strings"

	"github.com/talgya/damage-control/internal/entropy"
)

// fullNames are given to a few notable people instead of generated names.
var fullNames = []string{
	"your mother", "your father", "your brother", "your sister",
	"your son", "your daughter", "your spouse", "your nemesis",
	"your neighbour", "the prime minister of the world", "some guy",
	"your pet ferret", "the king of the homeless", "King Henry VIII",
	"your evil clone", "your future self", "a rabid boar", "Zeus",
	"Mack McMacdonald", "Frog?", "the Grinch",
}

type title struct {
	male, female string
	weight       float64
}

var titles = []title{
	{"", "", 30}, {"King", "Queen", 1}, {"Sir", "Dame", 5}, {"Angel", "Angel", .5},
	{"Reverend", "Reverend", 2}, {"Reverend Doctor Doctor", "Reverend Doctor Doctor", .2},
	{"Doctor", "Doctor", 3}, {"Colonel", "Colonel", 1}, {"Sideshow", "Sideshow", 1},
	{"Duke", "Duchess", 1}, {"Count", "Countess", 1}, {"Pope", "Pope", .5},
	{"Baby", "Baby", .2}, {"Captain", "Captain", 1.5},
}

var maleNames = []string{
	"Cuthbert", "Satan", "Aloisius", "Mortimer", "Balthasar",
	"Caspian", "Bartholomew", "Basil", "Rudyard", "Gerald", "Reginald",
	"Crofton", "Charles", "Archibald", "Blake", "Casper", "Edgar",
	"Elias", "Elwin", "Horace", "Ignatius", "Julius", "Lucius",
	"Maurice", "Quinn", "Raleigh", "Wilbur", "Xavier", "Alfred",
	"Kermit", "Leopold",
}

var femaleNames = []string{
	"Agatha", "Agnes", "Edith", "Gertrude", "Guinevere", "Mabel",
	"Ophelia", "Salome", "Beatrice", "Millicent", "Mable", "Vera",
	"Penelope", "Matilda", "Aurelia", "Euphemia", "Lillith", "Ethel",
	"Mildred", "Ada", "Nettie", "Minerva", "Doris", "Rowena",
}

// surnames with a second entry are gendered (male, female).
var surnames = [][2]string{
	{"of Narnia"}, {"the Conqueror"}, {"Doe"}, {"the Third"},
	{"Safecracker's apprentice"}, {"Gluemaker's horse"},
	{"Knight of the Round"}, {"the Reliable"}, {"Lord of Gnats"}, {"the Pitiful"},
	{"Closer of Deals"}, {"the Proud"}, {"the Passive"}, {"Binman's apprentice"},
	{"of the North"}, {"Soler's soulmate"}, {"Test Subject 042"},
	{"Haberdasher's son", "Haberdasher's daughter"},
	{"Wielder of Crowbars"},
}

// generatePersonName builds "Title Forename Surname" for a random sex.
func generatePersonName(rng *mrand.Rand) string {
	female := rng.IntN(2) == 1

	weights := make([]float64, len(titles))
	for i, t := range titles {
		weights[i] = t.weight
	}
	t, _ := entropy.WeightedChoice(rng, entropy.Pairs(titles, weights))

	var parts []string
	first, last := maleNames, 0
	if female {
		first, last = femaleNames, 1
		if t.female != "" {
			parts = append(parts, t.female)
		}
	} else if t.male != "" {
		parts = append(parts, t.male)
	}
	parts = append(parts, first[rng.IntN(len(first))])

	sn := surnames[rng.IntN(len(surnames))]
	if sn[1] == "" {
		last = 0
	}
	parts = append(parts, sn[last])
	return strings.Join(parts, " ")
}

// generateAreaNames produces distinct area names by combining syllables.
func generateAreaNames(rng *mrand.Rand, count int) []string {
	prefixes := []string{
		"Iron", "Green", "Ash", "Stone", "Mill", "Cross", "Black",
		"Silver", "Red", "White", "Dark", "Bright", "High", "Low",
		"Old", "New", "Far", "Deep", "Long", "Broad", "Gold", "Frost",
		"Storm", "Thorn", "Elm", "Oak", "Pine", "Copper", "River",
	}
	suffixes := []string{
		"haven", "ford", "hollow", "wick", "bridge", "gate", "keep",
		"stead", "wood", "field", "dale", "crest", "vale", "port",
		"town", "bury", "marsh", "well", "brook", "cliff", "moor",
		"ridge", "watch", "fall", "rest", "point", "reach", "helm",
	}

	count = min(count, len(prefixes)*len(suffixes))
	used := make(map[string]bool)
	names := make([]string, 0, count)
	for len(names) < count {
		name := prefixes[rng.IntN(len(prefixes))] + suffixes[rng.IntN(len(suffixes))]
		if !used[name] {
			used[name] = true
			names = append(names, name)
		}
	}
	return names
}

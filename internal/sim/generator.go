package sim

import (
	"fmt"
	"math/rand"
)

// Name fragments for generated club members. Purely cosmetic; the
// engine only ever sees opaque IDs.
var (
	givenNames = []string{ //nolint:gochecknoglobals // static name pool
		"Alex", "Bobby", "Casey", "Dana", "Eli", "Frankie", "Gale",
		"Harper", "Izzy", "Jules", "Kit", "Lee", "Morgan", "Noor",
		"Ollie", "Parker", "Quinn", "Robin", "Sam", "Toni",
	}
	surnames = []string{ //nolint:gochecknoglobals // static name pool
		"Adler", "Botvinnik", "Capablanca", "Duchamp", "Euwe",
		"Fine", "Gligoric", "Hort", "Ivkov", "Keres", "Larsen",
		"Morphy", "Najdorf", "Olafsson", "Petrosian", "Reshevsky",
		"Smyslov", "Tal", "Unzicker", "Vidmar",
	}
)

// memberName builds a display name from the RNG. Collisions are fine;
// identity lives in the ID.
func memberName(rng *rand.Rand) string {
	return fmt.Sprintf("%s %s",
		givenNames[rng.Intn(len(givenNames))],
		surnames[rng.Intn(len(surnames))],
	)
}

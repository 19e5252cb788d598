// Package mass holds the monoisotopic constants and residue masses used for
// fragment and precursor calculations, and the tolerance windows used to
// compare theoretical against observed masses.
package mass

// Monoisotopic masses
const (
	Proton  = float64(1.007276466879)
	H2O     = float64(18.0105647)
	Neutron = float64(1.00286864)
)

// Masses of amino acids (minus H2O)
var residueMass = map[byte]float64{
	'A': 71.0371138,
	'C': 103.0091848,
	'D': 115.0269430,
	'E': 129.0425931,
	'F': 147.0684139,
	'G': 57.0214637,
	'H': 137.0589119,
	'I': 113.0840640,
	'K': 128.0949630,
	'L': 113.0840640,
	'M': 131.0404849,
	'N': 114.0429274,
	'P': 97.0527638,
	'O': 237.1477269, // Pyrrolysine
	'Q': 128.0585775,
	'R': 156.1011110,
	'S': 87.0320284,
	'T': 101.0476785,
	'U': 150.9536355, // Selenocysteine
	'V': 99.0684139,
	'W': 186.0793129,
	'Y': 163.0633285,
}

// Residue returns the monoisotopic mass of an amino acid residue.
// ok is false for letters outside the supported alphabet.
func Residue(aa byte) (m float64, ok bool) {
	m, ok = residueMass[aa]
	return m, ok
}

// ValidResidue reports whether aa is a supported amino acid letter
func ValidResidue(aa byte) bool {
	_, ok := residueMass[aa]
	return ok
}

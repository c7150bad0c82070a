package model

import "fmt"

// Datum is one of the geodetic datums a Compass project can be declared in.
// The set is closed; names outside it are rejected by ParseDatum.
type Datum int

const (
	DatumAdindan Datum = iota
	DatumArc1950
	DatumArc1960
	DatumAustralian1966
	DatumAustralian1984
	DatumCampAreaAstro
	DatumCape
	DatumEuropean1950
	DatumEuropean1979
	DatumGeodetic1949
	DatumHongKong1963
	DatumHuTzuShan
	DatumIndian
	DatumNorthAmerican1927
	DatumNorthAmerican1983
	DatumOman
	DatumOrdinanceSurvey1936
	DatumPulkovo1942
	DatumSouthAmerican1956
	DatumSouthAmerican1969
	DatumTokyo
	DatumWgs1972
	DatumWgs1984

	datumCount
)

// datumNames holds the exact spelling used in project files.
var datumNames = [datumCount]string{
	DatumAdindan:             "Adindan",
	DatumArc1950:             "Arc 1950",
	DatumArc1960:             "Arc 1960",
	DatumAustralian1966:      "Australian 1966",
	DatumAustralian1984:      "Australian 1984",
	DatumCampAreaAstro:       "Camp Area Astro",
	DatumCape:                "Cape",
	DatumEuropean1950:        "European 1950",
	DatumEuropean1979:        "European 1979",
	DatumGeodetic1949:        "Geodetic 1949",
	DatumHongKong1963:        "HongKong 1963",
	DatumHuTzuShan:           "HuTzuShan",
	DatumIndian:              "Indian",
	DatumNorthAmerican1927:   "North American 1927",
	DatumNorthAmerican1983:   "North American 1983",
	DatumOman:                "Oman",
	DatumOrdinanceSurvey1936: "Ordinance Survey 1936",
	DatumPulkovo1942:         "Pulkovo 1942",
	DatumSouthAmerican1956:   "South American 1956",
	DatumSouthAmerican1969:   "South American 1969",
	DatumTokyo:               "Tokyo",
	DatumWgs1972:             "Wgs 1972",
	DatumWgs1984:             "Wgs 1984",
}

// Datums returns every known datum in declaration order.
func Datums() []Datum {
	out := make([]Datum, 0, datumCount)
	for d := Datum(0); d < datumCount; d++ {
		out = append(out, d)
	}
	return out
}

// String returns the project-file spelling of the datum.
func (d Datum) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Datum(%d)", int(d))
	}
	return datumNames[d]
}

// Valid reports whether d is one of the known datums.
func (d Datum) Valid() bool {
	return d >= 0 && d < datumCount
}

// ParseDatum matches name exactly (case-sensitive) against the known datum
// spellings.
func ParseDatum(name string) (Datum, bool) {
	for d, n := range datumNames {
		if n == name {
			return Datum(d), true
		}
	}
	return 0, false
}

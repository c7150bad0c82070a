package model

// FeetToMeters is the exact international foot.
const FeetToMeters = 0.3048

// EastNorthElevation is a local UTM position. Values are always stored in
// metres regardless of the unit they were read in.
type EastNorthElevation struct {
	Easting   float64
	Northing  float64
	Elevation float64
}

// FromMeters builds a position from metre values.
func FromMeters(easting, northing, elevation float64) EastNorthElevation {
	return EastNorthElevation{
		Easting:   easting,
		Northing:  northing,
		Elevation: elevation,
	}
}

// FromFeet builds a position from values measured in feet.
func FromFeet(easting, northing, elevation float64) EastNorthElevation {
	return EastNorthElevation{
		Easting:   easting * FeetToMeters,
		Northing:  northing * FeetToMeters,
		Elevation: elevation * FeetToMeters,
	}
}

// InFeet returns the components converted back to feet.
func (p EastNorthElevation) InFeet() (easting, northing, elevation float64) {
	return p.Easting / FeetToMeters, p.Northing / FeetToMeters, p.Elevation / FeetToMeters
}

// UtmLocation is a UTM reference point: a position, its zone and the grid
// convergence angle in decimal degrees.
type UtmLocation struct {
	Position         EastNorthElevation
	Zone             uint8 // 1-60 by convention; not enforced
	ConvergenceAngle float64
}

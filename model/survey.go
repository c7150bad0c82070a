package model

// Date is a survey date as written in a data file.
type Date struct {
	Month uint8
	Day   uint8
	Year  uint16
}

// CorrectionFactors are the frontsight instrument corrections.
type CorrectionFactors struct {
	Azimuth     float64
	Inclination float64
	Length      float64
}

// BacksightCorrectionFactors are the backsight instrument corrections.
type BacksightCorrectionFactors struct {
	Azimuth     float64
	Inclination float64
}

// Parameters holds the per-survey declination and correction factors.
//
// Format is the opaque FORMAT: code from the data file. It is kept only so
// the survey can be written back out; its contents are not interpreted.
type Parameters struct {
	Declination          float64
	Format               string
	Corrections          *CorrectionFactors          // nil when absent
	BacksightCorrections *BacksightCorrectionFactors // nil when absent
}

// Shot is one measured leg between two stations. LRUD values are passage
// dimensions at the from-station.
type Shot struct {
	From        string
	To          string
	Length      float64
	Azimuth     float64
	Inclination float64
	Left        float64
	Up          float64
	Down        float64
	Right       float64
	Flags       string // contents of a #|...# group, empty when absent
	Comment     string
}

// Survey is one block of a survey data file.
type Survey struct {
	CaveName   string
	Name       string
	Date       Date
	Comment    string
	Team       string
	Parameters Parameters
	Shots      []Shot
}

// TotalLength sums the length of every shot in the survey.
func (s Survey) TotalLength() float64 {
	var total float64
	for _, shot := range s.Shots {
		total += shot.Length
	}
	return total
}

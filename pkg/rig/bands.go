package rig

import (
	"fmt"
	"strings"
)

// Band is an amateur band with the frequency used when the device has no
// band-select command of its own
type Band struct {
	Name    string `json:"name"`
	Lower   int64  `json:"lower"`
	Upper   int64  `json:"upper"`
	Default int64  `json:"default"`
	// Select is the band index hamlib expects for BAND_SELECT, -1 if none
	Select int `json:"-"`
}

// Bands lists the supported bands in ascending order
var Bands = []Band{
	{Name: "160m", Lower: 1800000, Upper: 2000000, Default: 1840000, Select: 0},
	{Name: "80m", Lower: 3500000, Upper: 4000000, Default: 3600000, Select: 1},
	{Name: "60m", Lower: 5250000, Upper: 5450000, Default: 5355000, Select: 2},
	{Name: "40m", Lower: 7000000, Upper: 7300000, Default: 7100000, Select: 3},
	{Name: "30m", Lower: 10100000, Upper: 10150000, Default: 10130000, Select: 4},
	{Name: "20m", Lower: 14000000, Upper: 14350000, Default: 14100000, Select: 5},
	{Name: "17m", Lower: 18068000, Upper: 18168000, Default: 18120000, Select: 6},
	{Name: "15m", Lower: 21000000, Upper: 21450000, Default: 21150000, Select: 7},
	{Name: "12m", Lower: 24890000, Upper: 24990000, Default: 24940000, Select: 8},
	{Name: "10m", Lower: 28000000, Upper: 29700000, Default: 28320000, Select: 9},
	{Name: "6m", Lower: 50000000, Upper: 54000000, Default: 50150000, Select: 10},
	{Name: "2m", Lower: 144000000, Upper: 148000000, Default: 144300000, Select: 15},
	{Name: "70cm", Lower: 430000000, Upper: 450000000, Default: 432200000, Select: 16},
	{Name: "gen", Lower: 0, Upper: 0, Default: 5000000, Select: 11},
}

// LookupBand finds a band by name ("20m", "20", "70cm", "gen")
func LookupBand(name string) (Band, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, b := range Bands {
		if n == b.Name || n+"m" == b.Name {
			return b, nil
		}
	}
	if n == "70" {
		return LookupBand("70cm")
	}
	return Band{}, fmt.Errorf("unknown band %q", name)
}

// BandForFreq returns the band containing hz. General coverage is reported
// when hz is outside every amateur band.
func BandForFreq(hz int64) Band {
	for _, b := range Bands {
		if b.Upper > 0 && hz >= b.Lower && hz <= b.Upper {
			return b
		}
	}
	return Bands[len(Bands)-1]
}

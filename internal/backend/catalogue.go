package backend

import (
	"fmt"
	"hash/fnv"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry is one song the stub can predict.
type Entry struct {
	Artist   string `yaml:"artist"`
	Title    string `yaml:"title"`
	CoverURL string `yaml:"cover_url"`
	Lyrics   string `yaml:"lyrics"`
}

// Catalogue is the fixed label set the stub chooses from.
type Catalogue []Entry

// DefaultCatalogue is used when no catalogue file is configured. Some entries
// have no lyrics so both result layouts can be exercised.
var DefaultCatalogue = Catalogue{
	{Artist: "The Paper Lanterns", Title: "Harbour Lights", Lyrics: "Boats come home with the evening tide\nharbour lights on the water side"},
	{Artist: "Mira Sol", Title: "Dust on the Dashboard"},
	{Artist: "Northbound", Title: "Cold Coffee Sunday", Lyrics: "Cold coffee, Sunday\nnothing left to say"},
	{Artist: "Static Bloom", Title: "Neon Rain", Lyrics: "Neon rain on an empty street\nsignals blinking to a borrowed beat"},
	{Artist: "Juniper Row", Title: "Slow Parade"},
	{Artist: "Kites Over Seoul", Title: "Han River Walk", Lyrics: "Walking by the river while the city sleeps\nlights on the bridges, promises to keep"},
	{Artist: "Low Orbit", Title: "Satellite Hum"},
	{Artist: "The Quiet Hours", Title: "Porch Light", Lyrics: "Leave the porch light on for me\nI'll find my way back eventually"},
}

// Pick chooses an entry from a hash of key, so equal payloads always get the
// same song.
func (c Catalogue) Pick(key []byte) Entry {
	if len(c) == 0 {
		return Entry{}
	}
	h := fnv.New32a()
	h.Write(key)
	return c[h.Sum32()%uint32(len(c))]
}

// LoadCatalogue reads a YAML list of entries.
func LoadCatalogue(path string) (Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogue: %w", err)
	}
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalogue: %w", err)
	}
	for i, e := range c {
		if e.Artist == "" || e.Title == "" {
			return nil, fmt.Errorf("catalogue entry %d: artist and title are required", i+1)
		}
	}
	if len(c) == 0 {
		return nil, fmt.Errorf("catalogue %s is empty", path)
	}
	return c, nil
}

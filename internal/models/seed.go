package models

// Catalog is the yaml shape of the initial tables and menu.
type Catalog struct {
	Tables      []SeedTable      `yaml:"tables"`
	Collections []SeedCollection `yaml:"collections"`
}

type SeedTable struct {
	Name     string `yaml:"name"`
	Category string `yaml:"type"`
	// Count > 0 expands Name as a printf pattern, e.g. "Bàn %d".
	Count int `yaml:"count"`
}

type SeedCollection struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Items       []SeedItem `yaml:"items"`
}

type SeedItem struct {
	Name     string `yaml:"name"`
	Price    int64  `yaml:"price"`
	Category string `yaml:"category"`
	ImageURL string `yaml:"image_url"`
}

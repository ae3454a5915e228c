package models

// Station is the subset of station metadata the reservation engine reads.
type Station struct {
	ID          string   `db:"id" json:"id"`
	Name        string   `db:"name" json:"name"`
	Location    string   `db:"location" json:"location"`
	IsActive    bool     `db:"is_active" json:"is_active"`
	OperatorIDs []string `db:"operator_ids" json:"operator_ids"`
}

// Owner is a vehicle owner identified by a natural key such as a national id.
type Owner struct {
	Key      string `db:"key" json:"key"`
	Name     string `db:"name" json:"name"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

package models

import "time"

// Report is the finalized inspection act of a Request. It is created once,
// after the inspection, and is append-only apart from its identity-card photos.
type Report struct {
	ID             uint  `gorm:"primaryKey" json:"id"`
	RequestID      uint  `gorm:"not null;index" json:"request_id"`
	ExterminatorID *uint `gorm:"index" json:"exterminator_id,omitempty"`

	// District
	BorderingStreets      string `json:"bordering_streets"`
	HistoricalName        string `json:"historical_name"`
	TransportAvailability string `json:"transport_availability"`
	NearestEducational    string `json:"nearest_educational"`
	NearestShopping       string `json:"nearest_shopping"`
	EcoState              string `json:"eco_state"`
	HasParks              bool   `json:"has_parks"`
	HasPublicGardens      bool   `json:"has_public_gardens"`
	HasAlleys             bool   `json:"has_alleys"`
	HasWalkingAreas       bool   `json:"has_walking_areas"`
	HasCoastalArea        bool   `json:"has_coastal_area"`

	// House location
	HouseLocation              string `json:"house_location"`
	HasPlayground              bool   `json:"has_playground"`
	SurroundingAreaCleanliness string `json:"surrounding_area_cleanliness"`
	PlantingsAvailability      string `json:"plantings_availability"`

	// House characteristics
	WallMaterial         string `json:"wall_material"`
	RoofCondition        string `json:"roof_condition"`
	ExternalWallCladding string `json:"external_wall_cladding"`
	HasParking           bool   `json:"has_parking"`
	HasShop              bool   `json:"has_shop"`
	HasMarket            bool   `json:"has_market"`
	HasBusStop           bool   `json:"has_bus_stop"`
	OuterSkinCondition   string `json:"outer_skin_condition"`
	Plumbing             string `json:"plumbing"`
	Roof                 string `json:"roof"`
	Entrance             string `json:"entrance"`

	// Communications
	Gas                     string `json:"gas"`
	HasNonResidentialFloors bool   `json:"has_non_residential_floors"`
	ColdWaterSupply         string `json:"cold_water_supply"`
	HasCellars              bool   `json:"has_cellars"`
	HotWaterSupply          string `json:"hot_water_supply"`
	HasAttics               bool   `json:"has_attics"`
	Sewerage                string `json:"sewerage"`

	// Apartment
	Rooms              int     `json:"rooms"`
	Floor              int     `json:"floor"`
	NumberOfStoreys    int     `json:"number_of_storeys"`
	YearOfConstruction int     `json:"year_of_construction"`
	SiteArea           float64 `json:"site_area"`
	TotalArea          float64 `json:"total_area"`
	KitchenArea        float64 `json:"kitchen_area"`
	TheWindowsGoOut    string  `json:"the_windows_go_out"`
	Loggia             bool    `json:"loggia"`
	NoisyLocation      bool    `json:"noisy_location"`
	LastMajorOverhaul  string  `json:"last_major_overhaul"`
	Windows            string  `json:"windows"`
	HasPhone           bool    `json:"has_phone"`
	Ground             string  `json:"ground"`
	HasSignaling       bool    `json:"has_signaling"`
	WallDecoration     string  `json:"wall_decoration"`
	HasRedevelopment   bool    `json:"has_redevelopment"`
	PlumbingCondition  string  `json:"plumbing_condition"`
	HasFireAlarm       bool    `json:"has_fire_alarm"`
	HasSecurityAlarm   bool    `json:"has_security_alarm"`
	Balcony            bool    `json:"balcony"`

	CreatedAt time.Time `json:"created_at"`

	// Relations
	Request       *Request            `gorm:"foreignKey:RequestID" json:"-"`
	Exterminator  *Person             `gorm:"foreignKey:ExterminatorID" json:"-"`
	IdentityCards []IdentityCardPhoto `gorm:"foreignKey:ReportID" json:"-"`
}

// TableName specifies the table name for Report model
func (Report) TableName() string {
	return "smbt_reports"
}

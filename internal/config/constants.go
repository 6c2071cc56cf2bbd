package config

// Application constants
const (
	AppName    = "MSA Loan Statistics"
	AppVersion = "1.0.0"

	// Census geography clause selecting every metro/micro statistical area
	CensusGeography = "metropolitan statistical area/micropolitan statistical area:*"
	// Census ACS product used for the income profile
	CensusDataset = "acs/acs5/profile"
)

// Package domain holds the core types shared across modules: brokerage
// accounts and positions as returned by the upstream API, and the session
// credentials used to call it.
package domain

import "time"

// DateArrete is the upstream position timestamp. It marshals without a
// timezone suffix, matching the upstream wire format.
type DateArrete struct {
	time.Time
}

const dateArreteLayout = "2006-01-02T15:04:05"

// MarshalJSON implements json.Marshaler.
func (d DateArrete) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateArreteLayout) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DateArrete) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(`"`+dateArreteLayout+`"`, s)
	if err != nil {
		// Upstream occasionally sends full RFC3339 timestamps.
		t, err = time.Parse(`"`+time.RFC3339+`"`, s)
		if err != nil {
			return err
		}
	}
	d.Time = t
	return nil
}

// Position is a single instrument line within an account.
type Position struct {
	ISINCode                      string     `json:"isinCode"`
	LibInstrument                 string     `json:"libInstrument"`
	ValorisationAchatNette        float64    `json:"valorisationAchatNette"`
	ValeurMarcheDeviseSecurite    float64    `json:"valeurMarcheDeviseSecurite"`
	DateArrete                    DateArrete `json:"dateArrete"`
	QuantityMinute                float64    `json:"quantityMinute"`
	PMVL                          float64    `json:"pmvl"`
	PMVR                          float64    `json:"pmvr"`
	WeightMinute                  float64    `json:"weightMinute"`
	ReportingAssetClassCode       string     `json:"reportingAssetClassCode"`
	Performance                   float64    `json:"performance"`
	ClassActif                    string     `json:"classActif"`
	ClosingPriceInListingCurrency float64    `json:"closingPriceInListingCurrency"`
}

// Account is a brokerage account summary as listed by the upstream
// API.
type Account struct {
	AccountNumber string  `json:"accountNumber"`
	Label         string  `json:"label"`
	Value         float64 `json:"value"`
}

// AccountWithPositions is an account with its position lines attached.
type AccountWithPositions struct {
	AccountNumber string     `json:"accountNumber"`
	Label         string     `json:"label"`
	Value         float64    `json:"value"`
	Positions     []Position `json:"positions"`
}

// Session carries the upstream credentials for a single authenticated
// user. Handlers extract it from the verified JWT and pass it by value
// into every upstream call.
type Session struct {
	Username string
	Token    string
	UUID     string
}

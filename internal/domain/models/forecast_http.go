package models

// Requests for forecast HTTP endpoints. Defined in domain for consistency and reuse.

type ForecastRequest struct {
	Currency   string  `query:"currency" json:"currency" validate:"required,len=3,alpha"`
	Horizon    int     `query:"horizon" json:"horizon" default:"7" validate:"gte=1,lte=90"`
	Confidence float64 `query:"confidence" json:"confidence" default:"0.8" validate:"gt=0,lt=1"`
}

type ModelsRequest struct {
	Currency string `query:"currency" json:"currency" validate:"required,len=3,alpha"`
}

type ActiveModelRequest struct {
	Currency string `query:"currency" json:"currency" validate:"required,len=3,alpha"`
}

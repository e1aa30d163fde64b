package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// Readiness reports whether the forecast model can serve predictions.
type Readiness struct {
	Status         HealthStatus `json:"status"`
	Time           Timestamp    `json:"time"`
	ModelState     string       `json:"modelState"`
	ModelSource    string       `json:"modelSource,omitempty"`
	Since          Timestamp    `json:"since"`
	FeatureColumns []string     `json:"featureColumns,omitempty"`
	LastError      string       `json:"lastError,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       Timestamp         `json:"time"`
	Subsystems []SubsystemStatus `json:"subsystems"`
	Providers  []ProviderStatus  `json:"providers"`
}

// SubsystemStatus represents the status of a subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// ProviderStatus represents the status of an external provider.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}

// RetrainResponse reports a completed model retrain.
type RetrainResponse struct {
	Rows      int       `json:"rows"`
	R2        float64   `json:"r2"`
	TrainedAt Timestamp `json:"trainedAt"`
	Columns   []string  `json:"featureColumns"`
}

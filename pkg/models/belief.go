package models

// BeliefViewRequest asks for one agent's current belief
type BeliefViewRequest struct {
	AgentID int `json:"agent_id"`
}

// BeliefViewResponse carries one agent's belief at the time it was served
type BeliefViewResponse struct {
	AgentID     int                `json:"agent_id"`
	Found       bool               `json:"found"`
	TimeMs      int64              `json:"time_ms"`
	Uncertainty float64            `json:"uncertainty"`
	Targets     []TargetBeliefView `json:"targets"`
}

// TargetBeliefView is the observer rendering of a target belief
type TargetBeliefView struct {
	ID                int       `json:"id"`
	TypeProbabilities []float64 `json:"type_probabilities"`
	North             float64   `json:"north"`
	East              float64   `json:"east"`
	Heading           float64   `json:"heading"`
	Confidence        float64   `json:"confidence"`
	Timestamp         int64     `json:"timestamp"`
	Monitor           TaskView  `json:"monitor"`
	Attack            TaskView  `json:"attack"`
	Destroyed         bool      `json:"destroyed"`
}

// TaskView is one task record as seen by an observer
type TaskView struct {
	AgentID   int     `json:"agent_id"`
	Score     float64 `json:"score"`
	State     string  `json:"state"`
	Timestamp int64   `json:"timestamp"`
}

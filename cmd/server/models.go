package main

import "github.com/liamcoop/labrules/rules"

// API request and response models

// EvaluateRequest is the body of POST /api/v1/evaluate
type EvaluateRequest struct {
	TestID *int               `json:"testId" example:"1"`
	Values rules.Measurements `json:"values"`
}

// ExplainResponse is returned by POST /api/v1/evaluate?explain=true
type ExplainResponse struct {
	TestID  int                `json:"testId" example:"3"`
	Name    string             `json:"name" example:"Kidney Health"`
	Result  *rules.PanelResult `json:"result"`
	Matched map[string]string  `json:"matched"`
	Omitted []string           `json:"omitted"`
}

// FieldResponse describes one required input of a panel
type FieldResponse struct {
	Name string          `json:"name" example:"Total Bilirubin"`
	Type rules.ValueType `json:"type" example:"number"`
}

// PanelResponse describes a panel in the catalog
type PanelResponse struct {
	TestID  int             `json:"testId" example:"1"`
	Name    string          `json:"name" example:"Blood Pressure"`
	Fields  []FieldResponse `json:"fields"`
	Outputs []string        `json:"outputs" example:"systolic,diastolic"`
}

// PanelsListResponse is returned by GET /api/v1/panels
type PanelsListResponse struct {
	Panels []PanelResponse `json:"panels"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"invalid request body"`
	Details string `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status" example:"healthy"`
	Panels int    `json:"panels" example:"6"`
}

func newPanelResponse(p *rules.Panel) PanelResponse {
	resp := PanelResponse{
		TestID:  int(p.Kind),
		Name:    p.Name,
		Fields:  make([]FieldResponse, 0, len(p.Fields)),
		Outputs: p.OutputKeys(),
	}
	for _, f := range p.Fields {
		resp.Fields = append(resp.Fields, FieldResponse{Name: f.Key, Type: f.Type})
	}
	return resp
}

func newExplainResponse(p *rules.Panel, result *rules.PanelResult) ExplainResponse {
	resp := ExplainResponse{
		TestID:  int(p.Kind),
		Name:    p.Name,
		Result:  result,
		Matched: make(map[string]string),
		Omitted: []string{},
	}
	for _, o := range result.Outcomes {
		if o.Omitted {
			resp.Omitted = append(resp.Omitted, o.Key)
			continue
		}
		resp.Matched[o.Key] = o.Matched
	}
	return resp
}

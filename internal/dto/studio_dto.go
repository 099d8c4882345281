package dto

type GenerateRequest struct {
	Prompt       string `json:"prompt"`
	Style        string `json:"style"`
	Instrumental bool   `json:"instrumental"`
}

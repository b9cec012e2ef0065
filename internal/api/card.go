package api

import (
	"net/http"

	"github.com/cambio-ai/cambio/internal/agent"
)

// agentCard describes this agent's capabilities for discovery.
type agentCard struct {
	Name               string       `json:"name"`
	Description        string       `json:"description"`
	Version            string       `json:"version"`
	Status             string       `json:"status"`
	DefaultInputModes  []string     `json:"defaultInputModes"`
	DefaultOutputModes []string     `json:"defaultOutputModes"`
	Capabilities       capabilities `json:"capabilities"`
	Skills             []skill      `json:"skills"`
}

type capabilities struct {
	Streaming bool `json:"streaming"`
}

type skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Examples    []string `json:"examples"`
}

// card handles GET /agent-card.
func (s *Server) card(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, agentCard{
		Name:               agent.Name,
		Description:        "Chat agent that answers currency questions with live exchange rates.",
		Version:            s.version,
		Status:             "active",
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Capabilities:       capabilities{Streaming: true},
		Skills: []skill{
			{
				ID:          "exchange_rates",
				Name:        "Exchange rates",
				Description: "Look up current exchange rates and convert amounts between currencies.",
				Tags:        []string{"currency", "exchange", "finance"},
				Examples: []string{
					"What is the exchange rate between USD and EUR?",
					"Convert 100 USD to JPY",
				},
			},
		},
	})
}

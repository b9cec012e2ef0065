package currency

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Tool name constants; keep in sync with ToolNames.
const (
	RateToolName    = "getExchangeRate"
	ConvertToolName = "convertCurrency"
)

// ToolNames returns the names of the currency tools, for building
// tool reference lists at generation time.
func ToolNames() []string {
	return []string{RateToolName, ConvertToolName}
}

// RateInput is the input schema for the getExchangeRate tool.
type RateInput struct {
	From string `json:"from" jsonschema_description:"Source currency code, e.g. USD"`
	To   string `json:"to" jsonschema_description:"Target currency code, e.g. EUR"`
}

// ConvertInput is the input schema for the convertCurrency tool.
type ConvertInput struct {
	Amount float64 `json:"amount" jsonschema_description:"Amount in the source currency"`
	From   string  `json:"from" jsonschema_description:"Source currency code, e.g. USD"`
	To     string  `json:"to" jsonschema_description:"Target currency code, e.g. EUR"`
}

// RegisterTools registers the currency tools with Genkit. The tool
// functions return text in all cases, including failures, because the
// consumer is the model's reasoning loop.
func RegisterTools(g *genkit.Genkit, client *Client) {
	genkit.DefineTool(g, RateToolName,
		"Get the current exchange rate between two currencies. "+
			"Returns a sentence like \"1 USD = 0.9217 EUR\".",
		func(toolCtx *ai.ToolContext, input RateInput) (string, error) {
			return client.Rate(toolCtx.Context, input.From, input.To), nil
		})

	genkit.DefineTool(g, ConvertToolName,
		"Convert an amount from one currency to another at the current rate. "+
			"Returns a sentence like \"100 USD = 92.17 EUR\".",
		func(toolCtx *ai.ToolContext, input ConvertInput) (string, error) {
			return client.Convert(toolCtx.Context, input.Amount, input.From, input.To), nil
		})
}

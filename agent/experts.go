package agent

import (
	"github.com/etnz/cushion/docs"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

func instruction(text string) *genai.Content {
	return &genai.Content{Parts: []*genai.Part{{Text: text}}}
}

// NewFacilitator creates the expert the user talks to. It answers by asking
// the experts.
func NewFacilitator(model string, log zerolog.Logger, experts ...*Expert) *Expert {
	return &Expert{
		Name:      "Facilitator",
		ModelName: model,
		Log:       log,
		Config: &genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{FunctionDeclarations: NewDeclaration(experts)},
			},
			SystemInstruction: instruction(`
			As a facilitator you are in charge of the conversation and of solving the user's request.

			The user keeps an emergency fund, an investment account, a list of debts and a trading journal.
			Learn about the experts' skills from the Tools, and ask them questions. They keep the context
			of your previous questions.

			Devise a plan of questions to ask each expert and come up with the best response to the user's request.
			Answer in markdown. Never invent figures: only use the ones the experts gave you.
		`),
		},
		Library: NewLibrary(experts),
	}
}

// NewAccountant creates the expert that reads the books through tools.
func NewAccountant(model string, log zerolog.Logger, tools []*Func) *Expert {
	return &Expert{
		Name: "Accountant",
		Description: `This is the Accountant. They are in charge of reading the user's books:
		balances of the emergency fund and investments, runway in months, debts, trades and their
		profits, statistics of the balance histories, and projections of savings or debt payoff.`,
		ModelName: model,
		Log:       log,
		Config: &genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{FunctionDeclarations: NewDeclaration(tools)},
			},
			SystemInstruction: instruction(`
			You are the accountant in charge of the user's books.
			Use the Tools to get the figures you need, they return markdown reports.
			Other experts might ask you questions with an approximative language, figure out what they meant.
			Report the figures precisely, with their currency.

			Below is how the figures are defined.

		` + docs.Must("runway") + docs.Must("statistics") + docs.Must("projection")),
		},
		Library: NewLibrary(tools),
	}
}

// NewAdvisor creates the expert that grounds general financial questions
// with Google Search.
func NewAdvisor(model string, log zerolog.Logger) *Expert {
	return &Expert{
		Name: "Advisor",
		Description: `This is a personal finance advisor. They know the usual rules about emergency funds,
		debt repayment strategies and markets, and can search for recent news about a ticker.`,
		ModelName: model,
		Log:       log,
		Config: &genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{GoogleSearch: &genai.GoogleSearch{}},
			},
			SystemInstruction: instruction(`
			You are a personal finance advisor. You leverage Google Search to ground your assertions.
			You do not know the user's figures: ask for them in the question if you need them.
		`),
		},
	}
}

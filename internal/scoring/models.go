package scoring

// ScoringRequest is everything needed for one upstream call. It is rebuilt
// for every attempt.
type ScoringRequest struct {
	SystemPrompt string
	UserPrompt   string
	Model        string
	Temperature  float64
	MaxTokens    int
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatRequest is the proxy's wire format.
type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat responseFormat `json:"response_format"`
}

// Payload converts the request into the proxy's wire format.
func (r ScoringRequest) Payload() interface{} {
	return chatRequest{
		Model: r.Model,
		Messages: []chatMessage{
			{Role: "system", Content: r.SystemPrompt},
			{Role: "user", Content: r.UserPrompt},
		},
		Temperature:    r.Temperature,
		MaxTokens:      r.MaxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type errorBody struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// profile groups the answers the way the scoring prompt expects them.
type profile struct {
	Profile profileData `json:"profile"`
}

type profileData struct {
	Wealth struct {
		Income    string `json:"income"`
		NetWorth  string `json:"netWorth"`
		Lifestyle string `json:"lifestyle"`
	} `json:"wealth"`
	Physical struct {
		Height   string `json:"height"`
		BodyType string `json:"bodyType"`
		Strength string `json:"strength"`
	} `json:"physical"`
	Power struct {
		Leadership  string `json:"leadership"`
		SocialReach string `json:"socialReach"`
		Network     string `json:"network"`
	} `json:"power"`
	Intelligence struct {
		ProblemSolving string `json:"problemSolving"`
		Skills         string `json:"skills"`
		Achievements   string `json:"achievements"`
	} `json:"intelligence"`
	Willpower struct {
		Discipline   string `json:"discipline"`
		Productivity string `json:"productivity"`
		Resilience   string `json:"resilience"`
	} `json:"willpower"`
	Legacy struct {
		Relationships  string `json:"relationships"`
		Attractiveness string `json:"attractiveness"`
		Impact         string `json:"impact"`
	} `json:"legacy"`
}

package request

type SubmitRunRequest struct {
	Scenario string `json:"scenario"`
	BaseURL  string `json:"base_url"`
	Driver   string `json:"driver"` // "chromedp", "rod", "playwright" or "http"; empty uses the service default
	Force    bool   `json:"force"`
}

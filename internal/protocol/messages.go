package protocol

// SUBSCRIBE (observer -> server)
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// Recipient filters the notification stream to one character (0 = all).
	Recipient int64 `json:"recipient,omitempty"`
}

// TICK_DIGEST (server -> observer): summary of one scheduler pass.
type TickDigestMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	GameDate        int64  `json:"game_date"`
	IntentsRun      int    `json:"intents_run"`
	IntentsDone     int    `json:"intents_done"`
	ActivityGroups  int    `json:"activity_groups"`
	Failures        int    `json:"failures"`
}

// NOTIFICATION (server -> observer): a deduplicated failure report.
type NotificationMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	TitleTag        string         `json:"title_tag"`
	TitleParams     map[string]any `json:"title_params,omitempty"`
	TextTag         string         `json:"text_tag"`
	TextParams      map[string]any `json:"text_params,omitempty"`
	Count           int            `json:"count"`
	Recipient       int64          `json:"recipient"`
	GameDate        int64          `json:"game_date"`
}

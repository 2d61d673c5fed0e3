package response

// Health is the body of GET / and GET /health
type Health struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Time        string `json:"time"`
	ActiveUsers int    `json:"activeUsers"`
	ActiveRooms int    `json:"activeRooms"`
}

// Error is the body of a failed API request
type Error struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

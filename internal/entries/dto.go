package entries

// ListResponse is the body of GET /reflections.
type ListResponse struct {
	Success     bool    `json:"success"`
	Reflections []Entry `json:"reflections"`
	Count       int     `json:"count"`
}

// CreateResponse is the body of a successful POST /add_reflection.
type CreateResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message,omitempty"`
	Reflection       Entry  `json:"reflection"`
	TotalReflections int    `json:"totalReflections"`
}

// UpdateResponse is the body of a successful PUT /reflection/{id}.
type UpdateResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Reflection Entry  `json:"reflection"`
}

// DeleteResponse is the body of a successful DELETE /reflection/{id}.
type DeleteResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message,omitempty"`
	TotalReflections int    `json:"totalReflections"`
}

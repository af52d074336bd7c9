package response

// Response represents a standard API response format
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// ListData is the envelope for paginated collections. Clients read Results
// whether or not they care about the paging fields.
type ListData struct {
	Results interface{} `json:"results"`
	Total   int64       `json:"total"`
	Page    int         `json:"page"`
	Limit   int         `json:"limit"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// List returns a success response wrapping a paginated collection
func List(statusCode int, results interface{}, total int64, page, limit int) Response {
	return Success(statusCode, ListData{
		Results: results,
		Total:   total,
		Page:    page,
		Limit:   limit,
	})
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by outbound collaborator calls (notification service).
var HTTPClient = &http.Client{
	Timeout: 10 * time.Second,
}

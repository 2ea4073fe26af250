package handler

const (
	errInternalServer     = "Internal server error"
	errCampaignNotFound   = "Campaign not found"
	errCampaignRunning    = "Campaign is currently running"
	errConnectionNotReady = "Connection is not ready to send messages"
	errMediaNotFound      = "Media not found"
)

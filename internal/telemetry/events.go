package telemetry

// Event names. Properties never carry user content, file names or ids.
const (
	EventCommandExecuted    = "command_executed"
	EventWizardStep         = "wizard_step"
	EventRecommendationSave = "recommendation_saved"
	EventDocumentDownload   = "document_downloaded"
)

type keys map[string]struct{}

// eventSchema lists the properties each event may carry.
var eventSchema = map[string]keys{
	EventCommandExecuted:    {"command": {}, "duration_ms": {}, "success": {}, "error_kind": {}},
	EventWizardStep:         {"flow": {}, "step": {}, "index": {}},
	EventRecommendationSave: {"furniture": {}, "saved": {}},
	EventDocumentDownload:   {"flow": {}, "size_bytes": {}},
}

// TrackCommand records a finished CLI command.
func TrackCommand(c Client, command string, durationMs int64, errKind string) {
	props := Properties{
		"command":     command,
		"duration_ms": durationMs,
		"success":     errKind == "",
	}
	if errKind != "" {
		props["error_kind"] = errKind
	}
	c.Track(EventCommandExecuted, props)
}

// TrackWizardStep records entering a wizard step.
func TrackWizardStep(c Client, flow, step string, index int) {
	c.Track(EventWizardStep, Properties{
		"flow":  flow,
		"step":  step,
		"index": index,
	})
}

// TrackRecommendationSave records a save or unsave of a recommendation.
func TrackRecommendationSave(c Client, furniture string, saved bool) {
	c.Track(EventRecommendationSave, Properties{
		"furniture": furniture,
		"saved":     saved,
	})
}

// TrackDocumentDownload records a document download for a flow.
func TrackDocumentDownload(c Client, flow string, sizeBytes int) {
	c.Track(EventDocumentDownload, Properties{
		"flow":       flow,
		"size_bytes": sizeBytes,
	})
}

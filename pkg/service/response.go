package service

// ResponseBody renders r in the boundary shape shared by HTTP, gRPC and
// Lambda callers:
//
//	Success:     {ok: true, lang, answer, debug: {normalized_en}}
//	SoftFailure: {ok: true, lang, answer, warn}
//	HardFailure: {ok: false, error}
func ResponseBody(r Result) map[string]interface{} {
	switch r.Outcome {
	case Success:
		return map[string]interface{}{
			"ok":     true,
			"lang":   string(r.Lang),
			"answer": r.Answer,
			"debug": map[string]interface{}{
				"normalized_en": r.NormalizedEnglish,
			},
		}
	case SoftFailure:
		return map[string]interface{}{
			"ok":     true,
			"lang":   string(r.Lang),
			"answer": r.Answer,
			"warn":   r.Warning,
		}
	default:
		msg := "chat pipeline failed"
		if r.Err != nil {
			msg = r.Err.Error()
		}
		return map[string]interface{}{
			"ok":    false,
			"error": msg,
		}
	}
}

// ValidationBody renders a request rejection.
func ValidationBody(err error) map[string]interface{} {
	return map[string]interface{}{
		"error": ValidationMessage(err),
	}
}

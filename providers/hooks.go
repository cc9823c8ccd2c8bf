package providers

// AuthParamsHook returns extra authorization-request parameters a provider
// mandates. Hooks are looked up by provider slug; no hook means no extras.
type AuthParamsHook func(cfg Config) map[string]string

var authParamsHooks = map[string]AuthParamsHook{
	// Google only returns a refresh token when consent is re-prompted with
	// offline access.
	Google: func(Config) map[string]string {
		return map[string]string{"access_type": "offline", "prompt": "consent"}
	},
	// Apple delivers the callback as a form POST when name/email scopes are
	// requested.
	Apple: func(Config) map[string]string {
		return map[string]string{"response_mode": "form_post"}
	},
	AzureAD: func(Config) map[string]string {
		return map[string]string{"response_mode": "form_post"}
	},
}

// HookFor returns the auth-params hook registered for a provider, if any.
func HookFor(provider string) (AuthParamsHook, bool) {
	h, ok := authParamsHooks[provider]
	return h, ok
}

package verifier

/* None skips verification. The provider loader refuses this scheme
 * unless the provider is explicitly flagged insecure, so a missing
 * secret can never silently downgrade to "no verification needed".
 */
type None struct{}

func (v *None) Verify(payload []byte, headers map[string]string, secrets []string, toleranceSeconds int) (Result, error) {
	return Result{}, nil
}

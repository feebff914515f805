// Package validator builds declarative validation out of small Rule values.
//
// Each exported helper returns a Rule: a Check closure plus the
// ValidationError reported when the check fails. Apply evaluates rules in
// order and collects every failure into ValidationErrors, so a request
// handler can report all invalid fields at once.
//
//	err := validator.Apply(
//		validator.Required("notification.title", n.Title),
//		validator.RequiredSlice("notification.channels", n.Channels),
//		validator.ValidEnum("notification.level", level, levels),
//	)
//	if errs := validator.ExtractValidationErrors(err); errs != nil {
//		for _, field := range errs.Fields() {
//			// errs.Get(field) lists the messages for field
//		}
//	}
//
// ValidationErrors matches ErrValidationFailed with errors.Is. Every
// ValidationError carries a TranslationKey and values for i18n lookups.
package validator

// Package i18n carries the delivery locale through context.Context and
// translates notification strings for that locale.
//
// The dispatcher resolves a locale per recipient and derives a child context
// with SetLocale; channels read it back with LocaleFromContext or translate
// with Translator.Tc. Because the locale lives on the derived context, the
// caller's context keeps its own locale once delivery for a recipient ends.
//
//	tr, err := i18n.NewTranslator(ctx, i18n.NewFileAdapter(i18n.NewYAMLParser(), "locales/mail.yaml"))
//	subject := tr.Tc(i18n.SetLocale(ctx, "de"), "mail.welcome.subject", "name", user.Name)
//
// Translation files are keyed by language at the root and use dot-separated
// nested keys with %{name} placeholders.
package i18n

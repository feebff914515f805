// Package email sends transactional email through Postmark, or writes it to
// disk with DevSender during development.
//
//	sender, err := email.NewPostmarkClient(cfg)
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//		SendTo:   "user@example.com",
//		Subject:  "Invoice paid",
//		BodyHTML: html,
//		Tag:      "invoice-paid",
//	})
//
// Bodies are typically rendered from templ components with templates.Render.
// All failures wrap ErrInvalidConfig, ErrInvalidParams or ErrFailedToSendEmail.
package email

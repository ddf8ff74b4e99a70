// Package membership derives membership status from expiry dates and
// reconciles the stored membership_status_id against that rule.
//
// The Classifier is the single source of truth for the Active / Grace Period /
// Expired rule. SQL aggregates get their date bounds from StatusWindow so the
// database and Go never disagree on where a window starts.
//
// Inactive is never derived from dates. It applies only when an administrator
// explicitly marked the member inactive, and then it overrides every date rule.
package membership

// Package services holds the applicant-facing business logic.
//
// Services defined in this package:
// - SignInService: Runs the Google sign-in handshake and parks first-time applicants as pending
// - ClaimService: Validates and binds a registration number to a pending applicant
// - SessionPromoter: Turns a browser session into an authenticated one
// - SessionService: CSRF tokens, current session lookup and logout
// - DraftService: Stores the registration form draft of a signed-in applicant
package services

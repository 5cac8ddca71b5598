// Package discovery compiles Alexa.Discovery replies from the device
// registry.
//
// A Discover directive is answered with one document per registered
// device. Discovery is the only place the account-linking token arrives in
// the payload instead of the endpoint scope, and a failed verification
// answers EXPIRED_AUTHORIZATION_CREDENTIAL before anything is enumerated.
//
// The protocol caps a reply at 300 endpoints. Larger installations get a
// uniformly random subset, so the shuffle source is injectable for tests.
package discovery

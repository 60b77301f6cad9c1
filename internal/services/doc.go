// Package services holds the clients for external collaborators (script
// generation, speech synthesis) and the shared error taxonomy used to
// classify their failures.
package services

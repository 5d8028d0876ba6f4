// Package transcribe converts staged audio recordings into raw transcript text.
//
// OpenAITranscriber uploads the file to a hosted Whisper endpoint.
// WhisperXTranscriber shells out to a local whisperx install and forwards its
// progress output through services.ReportProgress. Both seed the speech model
// with an initial prompt built from the caller's meeting summary and key terms.
package transcribe

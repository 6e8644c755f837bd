// Package ytdlp searches for and downloads effect clips with the yt-dlp CLI.
//
// Search uses flat-playlist JSON so no media is touched until a candidate is
// chosen. Fetch extracts audio only, converts to MP3 and enforces the size and
// duration limits yt-dlp can check before downloading.
package ytdlp

// Package mediagen synthesizes the audio and image assets for an episode.
//
// Running after script approval, the stage narrates the script through the
// speech provider (one clip per scene, or one clip for the whole script in
// legacy mode), measures each clip with ffprobe, generates scene artwork
// when image generation is enabled, resolves the backing music track, and
// records a caption asset carrying the script excerpt. The resulting asset
// manifest is written onto the episode for the renderer to assemble.
//
// Image generation is best-effort: a rejected or failed image leaves the
// scene without artwork and the renderer falls back to a solid background.
// Narration is not; a failed synthesis fails the stage.
package mediagen

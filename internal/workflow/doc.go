// Package workflow runs the durable job queue that carries episodes from
// scheduled scripts to published posts.
//
// The manager owns two lanes. The pipeline lane claims script_generation,
// media_generation, and render jobs and walks each episode through the
// production chain, enqueueing the successor job after every completed
// stage. The publish lane claims publish jobs, one per platform post, so a
// slow platform API never holds up script or render work.
//
// Each lane runs a configurable number of workers. A worker claims the next
// due job under a lease, heartbeats the lease while the stage executes, and
// then either completes the job or hands it to the failure path, which
// classifies the error, reschedules retryable jobs with exponential
// backoff, and parks the rest. Worker zero of every lane also sweeps for
// jobs whose lease holder stopped heartbeating, so a crashed process never
// strands work.
package workflow

package orchestrator

// maxProgressBeforeReady keeps the bar short of full while provisioning is pending.
const maxProgressBeforeReady = 95

// DisplayProgress maps raw extraction progress to the value shown to the user:
// 100 once Ready, otherwise capped at 95.
func DisplayProgress(stage Stage, progress int) int {
	if stage == StageReady {
		return 100
	}
	if progress < 0 {
		return 0
	}
	if progress > maxProgressBeforeReady {
		return maxProgressBeforeReady
	}
	return progress
}

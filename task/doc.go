// Package task tracks long-running remote jobs.
//
// An AsyncTask wraps one job: Run starts it through an init function,
// UpdateInfo polls its status, and Wait blocks until the remote side reports
// it finished. A job that finishes with an error field set resolves Wait
// with a *RemoteTaskError; transport failures while polling are not fatal.
//
// An InfoService owns a set of tasks and polls every pending one on a
// background loop. The loop starts when the first task is registered and
// stops once the set is empty:
//
//	svc := task.NewInfoService(transport, task.InfoServiceConfig{PollDelay: time.Second})
//	defer svc.Close()
//
//	t, err := svc.Run(ctx, func(ctx context.Context) (string, error) {
//	    return api.StartExport(ctx)
//	})
//	if err != nil {
//	    return err
//	}
//	info, err := t.Wait(ctx)
//
// Cancel is idempotent while a cancellation is outstanding and fails with
// ErrTaskFinished once the job is done. Remove refuses pending tasks.
package task

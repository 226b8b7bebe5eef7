package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/oscp/internal/provisioning"
	"github.com/imamik/oscp/internal/provisioning/compute"
	"github.com/imamik/oscp/internal/provisioning/rollback"
	"github.com/imamik/oscp/internal/request"
	"github.com/imamik/oscp/internal/resource"
	"github.com/imamik/oscp/internal/util/naming"
)

// Saver snapshots instances into images and deploys from them again.
type Saver struct {
	instances *compute.Lifecycle
	deployer  *Deployer
	executor  *rollback.Executor
	log       logr.Logger
}

// NewSaver creates a saver that restores through deployer.
func NewSaver(deps provisioning.Deps, deployer *Deployer) *Saver {
	return &Saver{
		instances: compute.NewLifecycle(deps),
		deployer:  deployer,
		executor:  rollback.NewExecutor(deps.Log),
		log:       deps.Log.WithName("save"),
	}
}

// Save snapshots an instance and returns the image ID. With
// PowerOffDuringSave an active instance is stopped for the snapshot and
// started again afterwards.
func (s *Saver) Save(ctx context.Context, req request.SaveRequest) (_ string, err error) {
	defer observe("save", time.Now(), &err)

	var (
		inst      *resource.Instance
		wasActive bool
		imageID   string
	)
	err = s.executor.Run(ctx,
		rollback.Step{
			Label: "resolve instance",
			Do: func(ctx context.Context) error {
				var err error
				inst, err = s.instances.Get(ctx, req.InstanceID)
				if err != nil {
					return err
				}
				wasActive = inst.Status == resource.StatusActive
				return nil
			},
		},
		rollback.Step{
			Label: "power off",
			Do: func(ctx context.Context) error {
				if req.BehaviorDuringSave != request.PowerOffDuringSave || !wasActive {
					return nil
				}
				stopped, err := s.instances.PowerOff(ctx, inst)
				if err != nil {
					return err
				}
				inst = stopped
				return nil
			},
			Undo: func(ctx context.Context) error {
				if req.BehaviorDuringSave != request.PowerOffDuringSave || !wasActive {
					return nil
				}
				started, err := s.instances.PowerOn(ctx, inst)
				if err != nil {
					return err
				}
				inst = started
				return nil
			},
		},
		rollback.Step{
			Label: "snapshot",
			Do: func(ctx context.Context) error {
				var err error
				imageID, err = s.instances.CreateSnapshot(ctx, inst, naming.Snapshot(inst.Name))
				return err
			},
			Undo: func(ctx context.Context) error {
				return deleteResource(ctx, s.log, "image", imageID, s.deployer.cloud.DeleteImage)
			},
		},
		rollback.Step{
			Label: "power on",
			Do: func(ctx context.Context) error {
				if req.BehaviorDuringSave != request.PowerOffDuringSave || !wasActive {
					return nil
				}
				started, err := s.instances.PowerOn(ctx, inst)
				if err != nil {
					return err
				}
				inst = started
				return nil
			},
		},
	)
	if err != nil {
		return "", err
	}
	s.log.Info("instance saved", "instance", inst.Name, "image", imageID)
	return imageID, nil
}

// Restore deploys a new instance from a saved image.
func (s *Saver) Restore(ctx context.Context, req request.RestoreRequest) (*Deployment, error) {
	if _, err := s.deployer.cloud.GetImage(ctx, req.ImageID); err != nil {
		return nil, fmt.Errorf("failed to resolve saved image %s: %w", req.ImageID, err)
	}
	return s.deployer.Deploy(ctx, req)
}

// DeleteSaved deletes saved images. Images that are already gone are
// skipped. Deletions are not undone, but a cancelled context stops before
// the next image.
func (s *Saver) DeleteSaved(ctx context.Context, req request.DeleteSavedRequest) (err error) {
	defer observe("delete_saved", time.Now(), &err)

	steps := make([]rollback.Command, 0, len(req.ImageIDs))
	for _, id := range req.ImageIDs {
		steps = append(steps, rollback.Step{
			Label: "delete image " + id,
			Do:    func(ctx context.Context) error { return s.deleteImage(ctx, id) },
		})
	}
	return s.executor.Run(ctx, steps...)
}

func (s *Saver) deleteImage(ctx context.Context, id string) error {
	return deleteResource(ctx, s.log, "image", id, s.deployer.cloud.DeleteImage)
}

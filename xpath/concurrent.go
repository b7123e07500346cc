package xpath

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// EvaluateAll evaluates the program once per item, each item being the
// context item of its own evaluation. At most limit evaluations run at the
// same time; a limit lower than one means no limit. Results are returned in
// the order of the items.
func EvaluateAll(ctx context.Context, prog *Program, items []Item, limit int) ([]Sequence, error) {
	var (
		res     = make([]Sequence, len(items))
		grp, gc = errgroup.WithContext(ctx)
	)
	if limit > 0 {
		grp.SetLimit(limit)
	}
	for i := range items {
		grp.Go(func() error {
			if err := gc.Err(); err != nil {
				return err
			}
			seq, err := prog.Evaluate(prog.NewContext(Focus(items[i])))
			if err != nil {
				return err
			}
			res[i] = seq
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

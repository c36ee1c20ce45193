package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
)

var changepassword = cli.Command{
	Name:  "changepassword",
	Usage: "change the vault password, re-encrypting the seed and every account key",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "current_password",
			Usage: "the current password",
			Value: "",
		},
		&cli.StringFlag{
			Name:  "new_password",
			Usage: "the new password replacing the current one",
			Value: "",
		},
	},
	Action: changePasswordAction,
}

func changePasswordAction(ctx *cli.Context) error {
	svc, cleanup, err := getKeyringService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	bg := context.Background()
	currentPwd := ctx.String("current_password")

	if _, err := svc.Unlock(bg, currentPwd); err != nil {
		return err
	}
	if err := svc.SetPassword(
		bg, currentPwd, ctx.String("new_password"),
	); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Password has been changed")
	return nil
}

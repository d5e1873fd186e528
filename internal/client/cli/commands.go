package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

func (a *App) Register(ctx context.Context) error {
	userName, err := GetSimpleText(a.reader, "Enter user name", os.Stdout)
	if err != nil {
		printlnFn(err.Error())
		return err
	}

	password, err := GetPassword(os.Stdout)
	if err != nil {
		printlnFn(err.Error())
		return err
	}

	phone, err := GetSimpleText(a.reader, "Enter phone number (optional)", os.Stdout)
	if err != nil {
		printlnFn(err.Error())
		return err
	}

	if err := a.client.Register(ctx, userName, string(password), phone); err != nil {
		printlnFn(err.Error())
		return err
	}

	printlnFn("Success!")
	return nil
}

func (a *App) Login(ctx context.Context) error {
	userName, err := GetSimpleText(a.reader, "Enter user name", os.Stdout)
	if err != nil {
		printlnFn(err.Error())
		return err
	}

	password, err := GetPassword(os.Stdout)
	if err != nil {
		printlnFn(err.Error())
		return err
	}

	if err := a.client.Login(ctx, userName, string(password)); err != nil {
		printlnFn(err.Error())
		return err
	}

	a.userName = userName
	printlnFn("Logged in")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.client.Logout()
	a.userName = ""
	printlnFn("Logged out")
	return nil
}

// Send starts a new relay chain from a local image file.
func (a *App) Send(ctx context.Context) error {
	path, err := GetSimpleText(a.reader, "Path to image file", os.Stdout)
	if err != nil {
		printlnFn(err.Error())
		return err
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		printlnFn(err.Error())
		return err
	}

	hops, err := a.promptInt("Number of hops")
	if err != nil {
		return err
	}

	editTime, err := a.promptInt("Edit time per hop, seconds")
	if err != nil {
		return err
	}

	nextUser, err := GetSimpleText(a.reader, "First recipient", os.Stdout)
	if err != nil {
		printlnFn(err.Error())
		return err
	}

	id, err := a.client.CreateImage(ctx, payload, editTime, hops, nextUser)
	if err != nil {
		printlnFn(err.Error())
		return err
	}

	printlnFn("Image created:", id)
	return nil
}

// Pass hands an image held by the current user to the next recipient.
func (a *App) Pass(ctx context.Context) error {
	imageID, err := GetSimpleText(a.reader, "Image ID", os.Stdout)
	if err != nil {
		printlnFn(err.Error())
		return err
	}

	path, err := GetSimpleText(a.reader, "Path to edited image file", os.Stdout)
	if err != nil {
		printlnFn(err.Error())
		return err
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		printlnFn(err.Error())
		return err
	}

	nextUser, err := GetSimpleText(a.reader, "Next recipient", os.Stdout)
	if err != nil {
		printlnFn(err.Error())
		return err
	}

	hopsLeft, err := a.client.PassImage(ctx, imageID, payload, nextUser)
	if err != nil {
		printlnFn(err.Error())
		return err
	}

	printlnFn(fmt.Sprintf("Passed on, %d hops left", hopsLeft))
	return nil
}

func (a *App) List(ctx context.Context) error {
	images, err := a.client.ListImages(ctx)
	if err != nil {
		printlnFn(err.Error())
		return err
	}

	if len(images) == 0 {
		printlnFn("Nothing needs your attention")
		return nil
	}

	for _, img := range images {
		printlnFn(fmt.Sprintf("%s  %-15s  from %s  hops left: %d",
			img.ID, img.Status, img.Owner, img.HopsLeft))
	}
	return nil
}

// Show downloads a completed image and saves it to a local file.
func (a *App) Show(ctx context.Context) error {
	imageID, err := GetSimpleText(a.reader, "Image ID", os.Stdout)
	if err != nil {
		printlnFn(err.Error())
		return err
	}

	payload, err := a.client.FetchImage(ctx, imageID)
	if err != nil {
		printlnFn(err.Error())
		return err
	}

	path, err := GetSimpleText(a.reader, "Save to file", os.Stdout)
	if err != nil {
		printlnFn(err.Error())
		return err
	}

	if err := os.WriteFile(path, payload, 0o600); err != nil {
		printlnFn(err.Error())
		return err
	}

	printlnFn("Saved", path)
	return nil
}

func (a *App) Seen(ctx context.Context) error {
	imageID, err := GetSimpleText(a.reader, "Image ID", os.Stdout)
	if err != nil {
		printlnFn(err.Error())
		return err
	}

	if err := a.client.MarkSeen(ctx, imageID); err != nil {
		printlnFn(err.Error())
		return err
	}

	printlnFn("Acknowledged")
	return nil
}

func (a *App) AddFriend(ctx context.Context) error {
	friend, err := GetSimpleText(a.reader, "Friend user name", os.Stdout)
	if err != nil {
		printlnFn(err.Error())
		return err
	}

	if err := a.client.AddFriend(ctx, friend); err != nil {
		printlnFn(err.Error())
		return err
	}

	printlnFn("Added")
	return nil
}

func (a *App) Friends(ctx context.Context) error {
	friends, err := a.client.ListFriends(ctx)
	if err != nil {
		printlnFn(err.Error())
		return err
	}

	if len(friends) == 0 {
		printlnFn("No friends yet")
		return nil
	}
	for _, f := range friends {
		printlnFn(f)
	}
	return nil
}

func (a *App) promptInt(prompt string) (int, error) {
	text, err := GetSimpleText(a.reader, prompt, os.Stdout)
	if err != nil {
		printlnFn(err.Error())
		return 0, err
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		printlnFn("Not a number:", text)
		return 0, err
	}
	return n, nil
}

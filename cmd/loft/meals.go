package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/loft/pkg/recipes"
)

var mealsCmd = &cobra.Command{
	Use:   "meals",
	Short: "Search TheMealDB",
}

var mealsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search meals by name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := openApp(ctx, cmd, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		meals, err := app.Recipes.Search(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		return printMeals(cmd.OutOrStdout(), meals)
	},
}

var mealsRandomCmd = &cobra.Command{
	Use:   "random",
	Short: "Show a random meal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := openApp(ctx, cmd, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		meal, err := app.Recipes.Random(ctx)
		if err != nil {
			return err
		}
		favored, err := app.Recipes.IsFavored(ctx, meal.ID)
		if err != nil {
			return err
		}
		return printDetail(cmd.OutOrStdout(), recipes.Detail{Meal: meal, Favored: favored})
	},
}

var mealsShowCmd = &cobra.Command{
	Use:   "show <meal-id>",
	Short: "Show one meal and whether it is a favorite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := openApp(ctx, cmd, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		meal, err := app.Recipes.Lookup(ctx, args[0])
		if err != nil {
			return err
		}
		favored, err := app.Recipes.IsFavored(ctx, meal.ID)
		if err != nil {
			return err
		}
		return printDetail(cmd.OutOrStdout(), recipes.Detail{Meal: meal, Favored: favored})
	},
}

var favorCmd = &cobra.Command{
	Use:   "favor <meal-id>",
	Short: "Add a meal to favorites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := openApp(ctx, cmd, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		meal, err := app.Recipes.Lookup(ctx, args[0])
		if err != nil {
			return err
		}
		if err := app.Recipes.Favor(ctx, meal); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "favored %s (%s)\n", meal.Name, meal.ID)
		return nil
	},
}

var unfavorCmd = &cobra.Command{
	Use:   "unfavor <meal-id>",
	Short: "Remove a meal from favorites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := openApp(ctx, cmd, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Recipes.Unfavor(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "unfavored %s\n", args[0])
		return nil
	},
}

var favoritesCmd = &cobra.Command{
	Use:   "favorites",
	Short: "List favorite meals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := openApp(ctx, cmd, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		meals, err := app.Recipes.Favorites(ctx)
		if err != nil {
			return err
		}
		return printMeals(cmd.OutOrStdout(), meals)
	},
}

func printMeals(w io.Writer, meals []recipes.Meal) error {
	if jsonOut {
		if meals == nil {
			meals = []recipes.Meal{}
		}
		return printJSON(w, meals)
	}
	for _, m := range meals {
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, m.Name, m.Category)
	}
	return nil
}

func printDetail(w io.Writer, d recipes.Detail) error {
	if jsonOut {
		return printJSON(w, d)
	}
	mark := ""
	if d.Favored {
		mark = " *"
	}
	fmt.Fprintf(w, "%s%s\n", d.Meal.Name, mark)
	fmt.Fprintf(w, "  id: %s\n", d.Meal.ID)
	if d.Meal.Category != "" {
		fmt.Fprintf(w, "  category: %s\n", d.Meal.Category)
	}
	if d.Meal.Area != "" {
		fmt.Fprintf(w, "  area: %s\n", d.Meal.Area)
	}
	if d.Meal.Instructions != "" {
		fmt.Fprintf(w, "\n%s\n", d.Meal.Instructions)
	}
	return nil
}

func init() {
	mealsCmd.AddCommand(mealsSearchCmd, mealsRandomCmd, mealsShowCmd)
	rootCmd.AddCommand(mealsCmd, favorCmd, unfavorCmd, favoritesCmd)
}

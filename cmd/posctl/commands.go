package main

import (
	"errors"
	"fmt"
	"strings"

	"repairshop-backend/database"
	"repairshop-backend/models"
	"repairshop-backend/services"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the schema and the walk-in customer",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := database.Migrate(env.db); err != nil {
			return err
		}
		env.log.Info("migration complete")
		return nil
	},
}

var recomputeCmd = &cobra.Command{
	Use:       "recompute parts|customers",
	Short:     "Rebuild denormalized part or customer totals",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"parts", "customers"},
	RunE: func(cmd *cobra.Command, args []string) error {
		changed, err := recompute(env.db, args[0])
		if err != nil {
			return err
		}
		env.log.Info("recompute complete", zap.String("target", args[0]), zap.Int("changed", changed))
		fmt.Fprintf(cmd.OutOrStdout(), "%d %s changed\n", changed, args[0])
		return nil
	},
}

func recompute(db *gorm.DB, target string) (int, error) {
	var changed int
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		switch target {
		case "parts":
			changed, err = services.RecomputeAllParts(tx)
		case "customers":
			changed, err = services.RecomputeCustomers(tx)
		default:
			err = fmt.Errorf("unknown recompute target %q", target)
		}
		return err
	})
	return changed, err
}

var seedCounts seedPlan

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert fake customers, products, parts and suppliers for demos",
	RunE: func(cmd *cobra.Command, args []string) error {
		seed, _ := cmd.Flags().GetUint64("seed")
		created, err := seedData(env.db, gofakeit.New(seed), seedCounts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %d customers, %d products, %d parts, %d suppliers\n",
			created.Customers, created.Products, created.Parts, created.Suppliers)
		return nil
	},
}

var adminInput struct {
	email, password, firstName, lastName string
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin user (works even after registration is closed)",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := createAdmin(env.db, adminInput.email, adminInput.password, adminInput.firstName, adminInput.lastName)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "admin %s created (id %s)\n", user.Email, user.Id)
		return nil
	},
}

func createAdmin(db *gorm.DB, email, password, firstName, lastName string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.New("a valid --email is required")
	}
	if len(password) < 8 {
		return nil, errors.New("--password must be at least 8 characters")
	}
	user := &models.User{FirstName: firstName, LastName: lastName, Email: email, Role: models.RoleAdmin}
	if err := user.SetPassword(password); err != nil {
		return nil, err
	}
	if err := db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("a user with email %s already exists", email)
		}
		return nil, err
	}
	return user, nil
}

func init() {
	seedCmd.Flags().IntVar(&seedCounts.Customers, "customers", 20, "customers to create")
	seedCmd.Flags().IntVar(&seedCounts.Products, "products", 30, "products to create")
	seedCmd.Flags().IntVar(&seedCounts.Parts, "parts", 15, "parts to create, each with one batch")
	seedCmd.Flags().IntVar(&seedCounts.Suppliers, "suppliers", 3, "suppliers to create")
	seedCmd.Flags().Uint64("seed", 0, "random seed (0 picks one)")

	createAdminCmd.Flags().StringVar(&adminInput.email, "email", "", "login email")
	createAdminCmd.Flags().StringVar(&adminInput.password, "password", "", "password (min 8 characters)")
	createAdminCmd.Flags().StringVar(&adminInput.firstName, "first-name", "Shop", "first name")
	createAdminCmd.Flags().StringVar(&adminInput.lastName, "last-name", "Admin", "last name")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
}

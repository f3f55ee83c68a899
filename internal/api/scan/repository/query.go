package scanRepository

const (
	queryCreateScan = `
		INSERT INTO body_scans (
			id,
			user_id,
			source,
			image_url,
			gender,
			fat_scale,
			weight,
			height,
			age,
			bmi,
			calorie,
			water,
			weight_loss,
			days,
			created_at
		) VALUES (
			:id,
			:user_id,
			:source,
			:image_url,
			:gender,
			:fat_scale,
			:weight,
			:height,
			:age,
			:bmi,
			:calorie,
			:water,
			:weight_loss,
			:days,
			:created_at
		)
	`

	queryGetScanByID = `
		SELECT
			id,
			user_id,
			source,
			image_url,
			gender,
			fat_scale,
			weight,
			height,
			age,
			bmi,
			calorie,
			water,
			weight_loss,
			days,
			created_at
		FROM body_scans
		WHERE id = :id
	`

	queryGetScansByUserID = `
		SELECT
			id,
			user_id,
			source,
			image_url,
			gender,
			fat_scale,
			weight,
			height,
			age,
			bmi,
			calorie,
			water,
			weight_loss,
			days,
			created_at
		FROM body_scans
		WHERE user_id = :user_id
		ORDER BY created_at DESC, id DESC
		LIMIT :limit OFFSET :offset
	`

	queryCountScansByUserID = `
		SELECT COUNT(*) FROM body_scans WHERE user_id = :user_id
	`

	queryDeleteScan = `
		DELETE FROM body_scans WHERE id = :id
	`
)
